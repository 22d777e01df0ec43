//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration. One record is printed every
	// OVERSAMPLE*OVERSAMPLE_INTERVAL_US microseconds (10.7ms, ~93.5Hz).
	OVERSAMPLE_INTERVAL_US = 1070 // ADC read interval in microseconds
	OVERSAMPLE             = 10   // Reads averaged into one record

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// AD8232 front end
	PIN_ECG       = machine.A0
	PIN_LEAD_OFF1 = machine.D2 // LO+
	PIN_LEAD_OFF2 = machine.D3 // LO-
	PIN_SHUTDOWN  = machine.D4 // SDN, active low

	// Serial configuration
	// "ECG:4095\n" is 9 bytes; 94 lines/s * 9 bytes = 846 bytes/s.
	// 115200 8N1 carries 11,520 bytes/s.
	UART_BAUD_RATE = 115200

	RECORD_LABEL = "ECG"
)
