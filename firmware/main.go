//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"
)

var (
	adcECG machine.ADC
	uart   = machine.UART0

	// Oversampling accumulator
	ecgSum   uint32
	ecgCount int
	leadsOff bool

	// Timing
	nextRead time.Time
)

func main() {
	PIN_SHUTDOWN.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_SHUTDOWN.High()

	PIN_LEAD_OFF1.Configure(machine.PinConfig{Mode: machine.PinInput})
	PIN_LEAD_OFF2.Configure(machine.PinConfig{Mode: machine.PinInput})

	PIN_ECG.Configure(machine.PinConfig{Mode: machine.PinInput})
	adcECG = machine.ADC{Pin: PIN_ECG}
	adcECG.Configure(machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	})

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	nextRead = time.Now()

	for {
		now := time.Now()
		if now.Before(nextRead) {
			time.Sleep(50 * time.Microsecond)
			continue
		}
		// Deadlines advance from the previous deadline, not from now
		nextRead = nextRead.Add(OVERSAMPLE_INTERVAL_US * time.Microsecond)

		readECG()
		if ecgCount >= OVERSAMPLE {
			outputRecord()
			ecgSum = 0
			ecgCount = 0
			leadsOff = false
		}
	}
}

func readECG() {
	if PIN_LEAD_OFF1.Get() || PIN_LEAD_OFF2.Get() {
		leadsOff = true
	}

	// machine.ADC returns 16-bit scaled readings
	value := adcECG.Get() >> (16 - ADC_RESOLUTION)
	ecgSum += uint32(value)
	ecgCount++
}

// outputRecord prints "ECG:<counts>\n". A window with detached electrodes is
// reported as "LEADS_OFF\n", which the host rejects as a malformed record.
func outputRecord() {
	if leadsOff {
		print("LEADS_OFF\n")
		return
	}

	print(RECORD_LABEL)
	print(":")
	print(uint16(ecgSum / uint32(ecgCount)))
	print("\n")
}
