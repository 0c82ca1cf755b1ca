// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2025 YourCompany
//
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"fmt"

	"github.com/edgexfoundry/device-sdk-go/v4/pkg/models"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/common"

	"github.com/linjuya-lu/device_relay_go/internal/board"
	"github.com/linjuya-lu/device_relay_go/internal/relay"
)

// resourceBool 负责读写单路继电器
type resourceBool struct{}

// value 读取继电器 K<index> 的输出状态
func (resourceBool) value(b *board.Board, name, _ string, a attributes) (*models.CommandValue, error) {
	if !relay.Valid(a.Index) {
		return nil, fmt.Errorf("relay K%d does not exist", a.Index)
	}
	on := b.Relays().GetOutput(a.Index)
	cv, err := models.NewCommandValue(name, common.ValueTypeBool, on)
	if err != nil {
		return nil, fmt.Errorf("creating CommandValue: %w", err)
	}
	return cv, nil
}

// write 接收上层下发的 CommandValue，切换继电器
func (resourceBool) write(b *board.Board, a attributes, param *models.CommandValue) error {
	on, err := param.BoolValue()
	if err != nil {
		return fmt.Errorf("invalid bool write for %s: %w", param.DeviceResourceName, err)
	}
	return b.SetRelay(a.Index, on)
}
