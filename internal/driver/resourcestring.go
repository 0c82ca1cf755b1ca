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

// resourceString 运行模式（只读）和控制台命令（只写）
type resourceString struct{}

func (resourceString) value(b *board.Board, name, _ string, a attributes) (*models.CommandValue, error) {
	if a.Kind != kindMode {
		return nil, fmt.Errorf("resource kind %s is write-only", a.Kind)
	}
	return models.NewCommandValue(name, common.ValueTypeString, b.Mode().String())
}

// write 执行一条控制台命令，例如 "Firmware Update"
func (resourceString) write(b *board.Board, a attributes, param *models.CommandValue) error {
	if a.Kind != kindCommand {
		return readOnly(a)
	}
	line, err := param.StringValue()
	if err != nil {
		return fmt.Errorf("invalid string write for %s: %w", param.DeviceResourceName, err)
	}
	_, err = b.Command(line)
	return err
}
