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

// resourceUint 负责读写 16 位寄存器和继电器状态字
type resourceUint struct{}

func registerRaw(b *board.Board, a attributes) (uint16, error) {
	switch a.Kind {
	case kindRelayStatus:
		return relay.StatusWord(b.Relays()), nil
	case kindInput:
		return b.Input().Get(a.Index)
	default:
		return b.Holding().Get(a.Index)
	}
}

// value 读取寄存器并封装成 CommandValue 上报，支持 Uint16/Uint32
func (resourceUint) value(b *board.Board, name, valueType string, a attributes) (*models.CommandValue, error) {
	v, err := registerRaw(b, a)
	if err != nil {
		return nil, err
	}

	var cv *models.CommandValue
	switch valueType {
	case common.ValueTypeUint16, "":
		cv, err = models.NewCommandValue(name, common.ValueTypeUint16, v)
	case common.ValueTypeUint32:
		cv, err = models.NewCommandValue(name, common.ValueTypeUint32, uint32(v))
	default:
		return nil, fmt.Errorf("unsupported register dataType: %s", valueType)
	}
	if err != nil {
		return nil, fmt.Errorf("creating Uint CommandValue: %w", err)
	}
	return cv, nil
}

// write 写保持寄存器；输入寄存器和状态字只读
func (resourceUint) write(b *board.Board, a attributes, param *models.CommandValue) error {
	if a.Kind != kindHolding {
		return readOnly(a)
	}

	var v uint16
	var err error
	switch param.Type {
	case common.ValueTypeUint16:
		v, err = param.Uint16Value()
	case common.ValueTypeUint32:
		var w uint32
		if w, err = param.Uint32Value(); err == nil {
			if w > 0xFFFF {
				err = fmt.Errorf("%d overflows a register", w)
			}
			v = uint16(w)
		}
	default:
		return fmt.Errorf("resourceUint.write: unsupported type %s", param.Type)
	}
	if err != nil {
		return fmt.Errorf("invalid uint write for %s: %w", param.DeviceResourceName, err)
	}
	return b.Holding().Set(a.Index, v)
}
