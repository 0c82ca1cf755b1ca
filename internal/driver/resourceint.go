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
)

// resourceInt 负责读写单个持久化参数
type resourceInt struct{}

// value 读取第 index 个参数
func (resourceInt) value(b *board.Board, name, _ string, a attributes) (*models.CommandValue, error) {
	params := b.Params()
	if a.Index < 0 || a.Index >= len(params) {
		return nil, fmt.Errorf("parameter %d out of range [0, %d)", a.Index, len(params))
	}
	cv, err := models.NewCommandValue(name, common.ValueTypeInt32, params[a.Index])
	if err != nil {
		return nil, fmt.Errorf("creating Integer CommandValue: %w", err)
	}
	return cv, nil
}

// write 修改参数并立即保存到 Flash
func (resourceInt) write(b *board.Board, a attributes, param *models.CommandValue) error {
	v, err := param.Int32Value()
	if err != nil {
		return fmt.Errorf("invalid int32 write for %s: %w", param.DeviceResourceName, err)
	}
	return b.SetParam(a.Index, v)
}
