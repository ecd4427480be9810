//go:build darwin

package speech

func defaultPlayerCommands() map[string][]string {
	return map[string][]string{"": {"afplay"}}
}

func defaultSynthCommand() (string, []string, string) {
	return "say", []string{"-o", "{file}", "{text}"}, ".aiff"
}
