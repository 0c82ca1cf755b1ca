// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2019-2023 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"fmt"
	"os"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"

	"github.com/linjuya-lu/device_relay_go/internal/board"
	"github.com/linjuya-lu/device_relay_go/internal/config"
	"github.com/linjuya-lu/device_relay_go/internal/metrics"
	"github.com/linjuya-lu/device_relay_go/internal/mqttclient"
)

// EnvConfigPath 覆盖默认配置文件路径
const EnvConfigPath = "RELAY_BOARD_CONFIG"

// Services 由 InitializeBoard 组装的运行时组件
type Services struct {
	Board         *board.Board
	Metrics       *metrics.Metrics
	Bridge        *mqttclient.Bridge // MQTT 未启用时为空
	MetricsListen string             // 为空则不监听
}

func configPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return config.DefaultPath
}

// InitializeBoard 负责：
//  1. 加载配置
//  2. 打开串口、Flash 映像、继电器和启动标志，组装板卡
//  3. 按配置连接 MQTT
func InitializeBoard(path string, lc logger.LoggingClient) (*Services, error) {
	if err := config.LoadConfig(path); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := config.BoardCfg

	s := &Services{Metrics: metrics.New()}
	if cfg.Metrics.Enabled {
		s.MetricsListen = cfg.Metrics.Listen
	}

	b, err := board.Open(cfg, s.Metrics, lc)
	if err != nil {
		return nil, fmt.Errorf("open board: %w", err)
	}
	s.Board = b

	if cfg.MQTT.Enabled {
		client, err := mqttclient.NewClient(cfg.MQTT)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("初始化 MQTT 客户端失败: %w", err)
		}
		s.Bridge = mqttclient.NewBridge(client, b, cfg.MQTT, lc)
		lc.Infof("MQTT 已连接 %s", cfg.MQTT.Broker)
	}
	return s, nil
}
