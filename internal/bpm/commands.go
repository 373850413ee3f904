package bpm

import (
	"strconv"

	"github.com/banshee-data/bpm-calibrate/internal/fcs"
)

// LogicDeviceArgs builds the logic device configuration command. The
// control client parses its flags positionally, so the order is fixed.
func LogicDeviceArgs(s Settings, d Derived, fpgaHost string) fcs.Command {
	return fcs.Command{
		Stage: fcs.StageLogicDevice,
		Args: []string{
			"--setdivclk", strconv.Itoa(d.ClockDivider),
			"--setkx", s.Kx,
			"--setky", s.Ky,
			"--setphaseclk", strconv.Itoa(d.PhaseOffset),
			"--setsw" + s.Switching.String(),
			"--setwdw" + s.Sausaging.String(),
			"--setsamples", strconv.Itoa(d.Samples),
			"--setchan", strconv.Itoa(d.Channel),
			"--setfpgahostname", fpgaHost,
		},
	}
}

// RFFrontendArgs builds the RF front-end command: switching, then one
// attenuator per stage numbered from 1, then the host.
func RFFrontendArgs(s Settings, rffeHost string) fcs.Command {
	args := make([]string, 0, 3+2*len(s.Attenuators))
	args = append(args, "--setfesw"+s.Switching.String())
	for i, att := range s.Attenuators {
		args = append(args, "--setfeatt"+strconv.Itoa(i+1), att)
	}
	args = append(args, "--setrffehostname", rffeHost)
	return fcs.Command{Stage: fcs.StageRFFrontend, Args: args}
}

// TriggerArgs starts an acquisition. The command returns once the device
// has finished acquiring.
func TriggerArgs(fpgaHost string) fcs.Command {
	return fcs.Command{
		Stage: fcs.StageTrigger,
		Args:  []string{"--startacq", "--setfpgahostname", fpgaHost},
	}
}

// ReadCurveArgs reads the acquired channel back to standard output.
func ReadCurveArgs(d Derived, fpgaHost string) fcs.Command {
	return fcs.Command{
		Stage: fcs.StageReadCurve,
		Args:  []string{"--getcurve", strconv.Itoa(d.Channel), "--setfpgahostname", fpgaHost},
	}
}
