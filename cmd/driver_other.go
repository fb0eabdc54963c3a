//go:build !linux

/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"

	"github.com/allbin/go-commport/driver"
)

const defaultDriver = "bugst"

func platformDriver() (driver.Driver, error) {
	return nil, errors.New("termios driver is only available on linux")
}
