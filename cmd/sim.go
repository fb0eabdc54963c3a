/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"time"

	commport "github.com/allbin/go-commport"
	"github.com/allbin/go-commport/driver"
	"github.com/allbin/go-commport/internal/simdriver"
)

// simPorts are always served by the sim driver.
var simPorts = commport.StaticSource{
	{Name: "SIM0", PhysicalID: "sim:ttyS0", Kind: commport.PortKindSerial},
	{Name: "SIM1", PhysicalID: "sim:ttyS1", Kind: commport.PortKindSerial},
	{Name: "SIMLPT", PhysicalID: "sim:lp0", Kind: commport.PortKindParallel},
}

// newSimDriver creates a simulated device for every discovered port and
// keeps their lines moving so monitor and watch have something to show.
func newSimDriver(found []commport.Discovered) *simdriver.Driver {
	sim := simdriver.New()
	for _, d := range found {
		if d.Kind == commport.PortKindParallel {
			go animatePrinter(sim.AddParallel(d.PhysicalID))
		} else {
			go animateSerial(sim.AddSerial(d.PhysicalID))
		}
	}
	return sim
}

func animateSerial(dev *simdriver.Device) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for tick := 1; ; tick++ {
		<-ticker.C
		dev.SetLine(driver.LineCTS, !dev.Line(driver.LineCTS))
		if tick%3 == 0 {
			dev.SetLine(driver.LineDSR, !dev.Line(driver.LineDSR))
		}
		if tick%5 == 0 {
			dev.Inject([]byte(fmt.Sprintf("tick %d\r\n", tick)))
		}
		if tick%7 == 0 {
			dev.SetLine(driver.LineRI, true)
			dev.SetLine(driver.LineRI, false)
		}
		if tick%11 == 0 {
			dev.AddFramingError()
		}
	}
}

func animatePrinter(dev *simdriver.Device) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	status := driver.PrinterStatus{Selected: true, OutputEmpty: true}
	for {
		<-ticker.C
		status.PaperOut = !status.PaperOut
		dev.SetPrinterStatus(status)
	}
}
