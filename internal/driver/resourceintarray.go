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

// resourceIntArray 整组参数
type resourceIntArray struct{}

func (resourceIntArray) value(b *board.Board, name, _ string, _ attributes) (*models.CommandValue, error) {
	return models.NewCommandValue(name, common.ValueTypeInt32Array, b.Params())
}

// write 整组保存，长度必须与参数区一致
func (resourceIntArray) write(b *board.Board, _ attributes, param *models.CommandValue) error {
	arr, err := param.Int32ArrayValue()
	if err != nil {
		return fmt.Errorf("invalid integer-array write for %s: %w", param.DeviceResourceName, err)
	}
	return b.SaveParams(arr)
}
