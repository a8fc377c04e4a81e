package emc2101

import "testing"

func TestConfigRegisterCodec(t *testing.T) {
	for value := 0; value < 256; value++ {
		if got := ParseConfigRegister(uint8(value)).Encode(); got != uint8(value) {
			t.Fatalf("config register 0x%02X round trips to 0x%02X", value, got)
		}
	}

	config := ParseConfigRegister(0b0001_0100)
	if !config.DAC || !config.AltTach {
		t.Errorf("ParseConfigRegister(0x14) = %+v, want DAC and AltTach set", config)
	}
	if config.Mask || config.Standby || config.FanStandby || config.DisableTO || config.TCritOvrd || config.Queue {
		t.Errorf("ParseConfigRegister(0x14) = %+v, other flags should be clear", config)
	}
}

func TestStatusRegisterCodec(t *testing.T) {
	for value := 0; value < 256; value++ {
		if got := ParseStatusRegister(uint8(value)).Encode(); got != uint8(value) {
			t.Fatalf("status register 0x%02X round trips to 0x%02X", value, got)
		}
	}

	status := ParseStatusRegister(0b0000_0101)
	if !status.DiodeFault || !status.TachLimit {
		t.Errorf("ParseStatusRegister(0x05) = %+v, want DiodeFault and TachLimit set", status)
	}
}
