// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2022 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/edgexfoundry/device-sdk-go/v4/pkg/startup"

	"github.com/linjuya-lu/device_relay_go/internal/driver"
)

const (
	serviceName string = "device-relay"
)

// Version 由构建时 -ldflags "-X main.Version=..." 覆盖
var Version = "0.0.0"

func main() {
	d := driver.NewRelayDeviceDriver()
	startup.Bootstrap(serviceName, Version, d)
}
