package simconnect

import "runtime"

// RuntimeNames lists the SimConnect library file names to try, in order,
// for the running architecture.
func RuntimeNames() []string {
	if runtime.GOARCH == "386" {
		return []string{
			"FSX-SimConnect.dll",
			"FSXSP2-SimConnect.dll",
			"FSX-SE-SimConnect.dll",
		}
	}

	return []string{"FS2020-SimConnect.dll"}
}
