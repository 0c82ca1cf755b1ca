// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2025 YourCompany
//
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"encoding/json"
	"fmt"

	"github.com/edgexfoundry/device-sdk-go/v4/pkg/models"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/common"

	"github.com/linjuya-lu/device_relay_go/internal/board"
)

// resourceBinary 以 JSON 字节上报整板快照
type resourceBinary struct{}

func (resourceBinary) value(b *board.Board, name, _ string, _ attributes) (*models.CommandValue, error) {
	raw, err := json.Marshal(b.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return models.NewCommandValue(name, common.ValueTypeBinary, raw)
}

func (resourceBinary) write(_ *board.Board, a attributes, _ *models.CommandValue) error {
	return readOnly(a)
}
