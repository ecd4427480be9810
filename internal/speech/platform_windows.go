//go:build windows

package speech

func defaultPlayerCommands() map[string][]string {
	// The empty argument is the window title expected by start.
	return map[string][]string{"": {"cmd", "/C", "start", "", "/WAIT"}}
}

func defaultSynthCommand() (string, []string, string) {
	return "espeak", []string{"-w", "{file}", "{text}"}, ".wav"
}
