// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2025 YourCompany
//
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"fmt"

	dsModels "github.com/edgexfoundry/device-sdk-go/v4/pkg/models"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/common"
	"github.com/spf13/cast"

	"github.com/linjuya-lu/device_relay_go/internal/board"
)

// 设备资源 attributes 中 kind 的取值
const (
	kindRelay       = "relay"       // index: 1..8, Bool
	kindRelayStatus = "relayStatus" // Uint16, 只读
	kindHolding     = "holding"     // index: 寄存器地址, Uint16 或 Float32(scale)
	kindInput       = "input"       // index: 寄存器地址, 只读
	kindParam       = "param"       // index: 参数序号, Int32
	kindParams      = "params"      // 全部参数, Int32Array
	kindMode        = "mode"        // String, 只读
	kindCommand     = "command"     // String, 只写, 控制台命令
	kindSnapshot    = "snapshot"    // Binary(JSON), 只读
)

// attributes 设备资源的 attributes
type attributes struct {
	Kind  string
	Index int
	Scale float64
}

func parseAttributes(attrs map[string]any) (attributes, error) {
	a := attributes{Scale: 1}
	kind, err := cast.ToStringE(attrs["kind"])
	if err != nil || kind == "" {
		return a, fmt.Errorf("attribute kind missing")
	}
	a.Kind = kind
	if v, ok := attrs["index"]; ok {
		if a.Index, err = cast.ToIntE(v); err != nil {
			return a, fmt.Errorf("attribute index: %w", err)
		}
	}
	if v, ok := attrs["scale"]; ok {
		if a.Scale, err = cast.ToFloat64E(v); err != nil {
			return a, fmt.Errorf("attribute scale: %w", err)
		}
		if a.Scale == 0 {
			return a, fmt.Errorf("attribute scale must not be 0")
		}
	}
	if _, err := resourceFor(a, ""); err != nil {
		return a, err
	}
	return a, nil
}

// resource 一类设备资源的读写
type resource interface {
	value(b *board.Board, name, valueType string, a attributes) (*dsModels.CommandValue, error)
	write(b *board.Board, a attributes, param *dsModels.CommandValue) error
}

func resourceFor(a attributes, valueType string) (resource, error) {
	switch a.Kind {
	case kindRelay:
		return resourceBool{}, nil
	case kindRelayStatus, kindHolding, kindInput:
		if valueType == common.ValueTypeFloat32 || valueType == common.ValueTypeFloat64 {
			return resourceFloat{}, nil
		}
		return resourceUint{}, nil
	case kindParam:
		return resourceInt{}, nil
	case kindParams:
		return resourceIntArray{}, nil
	case kindMode, kindCommand:
		return resourceString{}, nil
	case kindSnapshot:
		return resourceBinary{}, nil
	default:
		return nil, fmt.Errorf("unknown resource kind %q", a.Kind)
	}
}

func readResource(b *board.Board, req dsModels.CommandRequest) (*dsModels.CommandValue, error) {
	a, err := parseAttributes(req.Attributes)
	if err != nil {
		return nil, err
	}
	r, err := resourceFor(a, req.Type)
	if err != nil {
		return nil, err
	}
	return r.value(b, req.DeviceResourceName, req.Type, a)
}

func writeResource(b *board.Board, req dsModels.CommandRequest, param *dsModels.CommandValue) error {
	a, err := parseAttributes(req.Attributes)
	if err != nil {
		return err
	}
	r, err := resourceFor(a, param.Type)
	if err != nil {
		return err
	}
	return r.write(b, a, param)
}

func readOnly(a attributes) error {
	return fmt.Errorf("resource kind %s is read-only", a.Kind)
}
