// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2025 YourCompany
//
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"fmt"
	"math"

	"github.com/edgexfoundry/device-sdk-go/v4/pkg/models"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/common"

	"github.com/linjuya-lu/device_relay_go/internal/board"
)

// resourceFloat 按 scale 换算的寄存器，例如外设轮询到的 ADC 值
type resourceFloat struct{}

// value 读取寄存器原始值乘以 scale
func (resourceFloat) value(b *board.Board, name, valueType string, a attributes) (*models.CommandValue, error) {
	raw, err := registerRaw(b, a)
	if err != nil {
		return nil, err
	}
	v := float64(raw) * a.Scale

	var cv *models.CommandValue
	switch valueType {
	case common.ValueTypeFloat32:
		cv, err = models.NewCommandValue(name, common.ValueTypeFloat32, float32(v))
	case common.ValueTypeFloat64:
		cv, err = models.NewCommandValue(name, common.ValueTypeFloat64, v)
	default:
		return nil, fmt.Errorf("unsupported float dataType: %s", valueType)
	}
	if err != nil {
		return nil, fmt.Errorf("creating Float CommandValue: %w", err)
	}
	return cv, nil
}

// write 把工程值除以 scale 后四舍五入写入保持寄存器
func (resourceFloat) write(b *board.Board, a attributes, param *models.CommandValue) error {
	if a.Kind != kindHolding {
		return readOnly(a)
	}

	var v float64
	switch param.Type {
	case common.ValueTypeFloat32:
		f, err := param.Float32Value()
		if err != nil {
			return fmt.Errorf("invalid float32 write for %s: %w", param.DeviceResourceName, err)
		}
		v = float64(f)
	case common.ValueTypeFloat64:
		f, err := param.Float64Value()
		if err != nil {
			return fmt.Errorf("invalid float64 write for %s: %w", param.DeviceResourceName, err)
		}
		v = f
	default:
		return fmt.Errorf("resourceFloat.write: unsupported type %s", param.Type)
	}

	raw := math.Round(v / a.Scale)
	if raw < 0 || raw > math.MaxUint16 {
		return fmt.Errorf("%g out of register range", v)
	}
	return b.Holding().Set(a.Index, uint16(raw))
}
