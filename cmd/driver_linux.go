//go:build linux

/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"github.com/allbin/go-commport/driver"
	"github.com/allbin/go-commport/driver/termios"
)

const defaultDriver = "termios"

func platformDriver() (driver.Driver, error) {
	return termios.New(), nil
}
