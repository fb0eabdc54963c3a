/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"strings"

	commport "github.com/allbin/go-commport"
)

func parseSignalState(state string) (bool, error) {
	switch strings.ToLower(state) {
	case "high", "on", "true", "1":
		return true, nil
	case "low", "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid state: %s (valid: high, low, on, off, true, false, 1, 0)", state)
	}
}

func formatSignalState(state bool) string {
	if state {
		return "HIGH"
	}
	return "LOW"
}

func parseStopBits(s string) (commport.StopBits, error) {
	switch s {
	case "1":
		return commport.StopBits1, nil
	case "1.5":
		return commport.StopBits1_5, nil
	case "2":
		return commport.StopBits2, nil
	default:
		return 0, fmt.Errorf("invalid stop bits: %s (valid: 1, 1.5, 2)", s)
	}
}

func parseParity(s string) (commport.Parity, error) {
	switch strings.ToLower(s) {
	case "n", "none":
		return commport.ParityNone, nil
	case "o", "odd":
		return commport.ParityOdd, nil
	case "e", "even":
		return commport.ParityEven, nil
	case "m", "mark":
		return commport.ParityMark, nil
	case "s", "space":
		return commport.ParitySpace, nil
	default:
		return 0, fmt.Errorf("invalid parity: %s (valid: none, odd, even, mark, space)", s)
	}
}

// parseFlowControl accepts none, rtscts, xonxoff or a comma separated list
// of the per direction modes.
func parseFlowControl(s string) (commport.FlowControl, error) {
	var fc commport.FlowControl
	for _, part := range strings.Split(strings.ToLower(s), ",") {
		switch strings.TrimSpace(part) {
		case "none", "":
		case "rtscts":
			fc |= commport.FlowControlRTSCTSIn | commport.FlowControlRTSCTSOut
		case "rtscts-in":
			fc |= commport.FlowControlRTSCTSIn
		case "rtscts-out":
			fc |= commport.FlowControlRTSCTSOut
		case "xonxoff":
			fc |= commport.FlowControlXonXoffIn | commport.FlowControlXonXoffOut
		case "xonxoff-in":
			fc |= commport.FlowControlXonXoffIn
		case "xonxoff-out":
			fc |= commport.FlowControlXonXoffOut
		default:
			return 0, fmt.Errorf("unknown flow control: %s (valid: none, rtscts, xonxoff, rtscts-in, rtscts-out, xonxoff-in, xonxoff-out)", part)
		}
	}
	return fc, fc.Validate()
}

// parseCategories maps event names such as cts or data_available onto
// categories. An empty list selects the modem status lines of a serial
// port or the error lines of a parallel port.
func parseCategories(names []string, kind commport.PortKind) ([]commport.Category, error) {
	if len(names) == 0 {
		if kind == commport.PortKindParallel {
			return []commport.Category{commport.EventError}, nil
		}
		return []commport.Category{
			commport.EventCTS, commport.EventDSR, commport.EventRingIndicator, commport.EventCarrierDetect,
		}, nil
	}

	var out []commport.Category
	for _, name := range names {
		upper := strings.ToUpper(strings.TrimSpace(name))
		if upper == "DCD" {
			upper = "CD"
		}
		c, ok := commport.ParseCategory(upper)
		if !ok {
			return nil, fmt.Errorf("unknown event: %s (valid: cts, dsr, ri, cd, oe, pe, fe, bi, data_available, output_buffer_empty, error)", name)
		}
		out = append(out, c)
	}
	return out, nil
}

func parseHexString(hexStr string) (string, error) {
	// Remove common hex prefixes and whitespace
	hexStr = strings.ReplaceAll(hexStr, " ", "")
	hexStr = strings.ReplaceAll(hexStr, "0x", "")
	hexStr = strings.ReplaceAll(hexStr, "0X", "")

	if len(hexStr)%2 != 0 {
		return "", fmt.Errorf("hex string must have even length")
	}

	var result strings.Builder
	for i := 0; i < len(hexStr); i += 2 {
		hexByte := hexStr[i : i+2]
		var b byte
		if _, err := fmt.Sscanf(hexByte, "%x", &b); err != nil {
			return "", fmt.Errorf("invalid hex byte '%s': %v", hexByte, err)
		}
		result.WriteByte(b)
	}

	return result.String(), nil
}
