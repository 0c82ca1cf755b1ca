// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2019-2023 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package driver provides an implementation of a ProtocolDriver interface.
package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/edgexfoundry/device-sdk-go/v4/pkg/interfaces"
	dsModels "github.com/edgexfoundry/device-sdk-go/v4/pkg/models"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/models"

	"github.com/linjuya-lu/device_relay_go/internal/board"
	"github.com/linjuya-lu/device_relay_go/internal/metrics"
	"github.com/linjuya-lu/device_relay_go/internal/mqttclient"
)

type RelayDriver struct {
	lc      logger.LoggingClient
	locker  sync.Mutex
	sdk     interfaces.DeviceServiceSDK
	board   *board.Board
	metrics *metrics.Metrics
	bridge  *mqttclient.Bridge
	listen  string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var once sync.Once
var driver *RelayDriver

func NewRelayDeviceDriver() interfaces.ProtocolDriver {
	once.Do(func() {
		driver = new(RelayDriver)
	})
	return driver
}

func (d *RelayDriver) Initialize(sdk interfaces.DeviceServiceSDK) error {
	d.sdk = sdk
	d.lc = sdk.LoggingClient()

	s, err := InitializeBoard(configPath(), d.lc)
	if err != nil {
		return fmt.Errorf("初始化继电器板失败: %w", err)
	}
	d.board, d.metrics, d.bridge, d.listen = s.Board, s.Metrics, s.Bridge, s.MetricsListen
	return nil
}

func (d *RelayDriver) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	announce := d.board.Boot()
	d.goRun(ctx, "board", func(ctx context.Context) error {
		return d.board.Serve(ctx, announce)
	})
	if d.bridge != nil {
		d.goRun(ctx, "mqtt", d.bridge.Run)
	}
	if d.listen != "" {
		d.goRun(ctx, "metrics", func(ctx context.Context) error {
			return d.metrics.Serve(ctx, d.listen)
		})
	}
	d.lc.Infof("继电器板服务已启动, 模式 %s", d.board.Mode())
	return nil
}

func (d *RelayDriver) goRun(ctx context.Context, name string, fn func(context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := fn(ctx); err != nil {
			d.lc.Errorf("%s 退出: %v", name, err)
		}
	}()
}

func (d *RelayDriver) HandleReadCommands(deviceName string, protocols map[string]models.ProtocolProperties, reqs []dsModels.CommandRequest) (res []*dsModels.CommandValue, err error) {
	d.locker.Lock()
	defer d.locker.Unlock()

	res = make([]*dsModels.CommandValue, len(reqs))
	for i, req := range reqs {
		cv, err := readResource(d.board, req)
		if err != nil {
			return nil, fmt.Errorf("读取 %s.%s 失败: %w", deviceName, req.DeviceResourceName, err)
		}
		res[i] = cv
		d.lc.Debugf("读取值: %s.%s = %v", deviceName, req.DeviceResourceName, cv.Value)
	}
	return res, nil
}

func (d *RelayDriver) HandleWriteCommands(deviceName string, protocols map[string]models.ProtocolProperties, reqs []dsModels.CommandRequest,
	params []*dsModels.CommandValue) error {
	d.locker.Lock()
	defer d.locker.Unlock()

	if len(reqs) != len(params) {
		return fmt.Errorf("写请求 %d 个, 参数 %d 个", len(reqs), len(params))
	}
	for i, req := range reqs {
		if err := writeResource(d.board, req, params[i]); err != nil {
			return fmt.Errorf("写入 %s.%s 失败: %w", deviceName, req.DeviceResourceName, err)
		}
		d.lc.Infof("写入值: %s.%s = %v", deviceName, req.DeviceResourceName, params[i].Value)
	}
	return nil
}

func (d *RelayDriver) Stop(force bool) error {
	d.lc.Info("RelayDriver.Stop: device-relay driver is stopping...")
	if d.cancel != nil {
		d.cancel()
	}
	if !force {
		d.wg.Wait()
	}
	if d.board != nil {
		return d.board.Close()
	}
	return nil
}

func (d *RelayDriver) AddDevice(deviceName string, protocols map[string]models.ProtocolProperties, adminState models.AdminState) error {
	d.lc.Debugf("a new Device is added: %s", deviceName)
	return nil
}

func (d *RelayDriver) UpdateDevice(deviceName string, protocols map[string]models.ProtocolProperties, adminState models.AdminState) error {
	d.lc.Debugf("Device %s is updated", deviceName)
	return nil
}

func (d *RelayDriver) RemoveDevice(deviceName string, protocols map[string]models.ProtocolProperties) error {
	d.lc.Debugf("Device %s is removed", deviceName)
	return nil
}

func (d *RelayDriver) Discover() error {
	return fmt.Errorf("driver's Discover function isn't implemented")
}

func (d *RelayDriver) ValidateDevice(device models.Device) error {
	profile, err := d.sdk.GetProfileByName(device.ProfileName)
	if err != nil {
		return err
	}
	for _, r := range profile.DeviceResources {
		if _, err := parseAttributes(r.Attributes); err != nil {
			return fmt.Errorf("resource %s: %w", r.Name, err)
		}
	}
	return nil
}
