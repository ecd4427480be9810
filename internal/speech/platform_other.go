//go:build !darwin && !windows

package speech

func defaultPlayerCommands() map[string][]string {
	return map[string][]string{
		".mp3": {"mpg123", "-q"},
		".wav": {"aplay", "-q"},
		"":     {"mpg123", "-q"},
	}
}

func defaultSynthCommand() (string, []string, string) {
	return "espeak", []string{"-w", "{file}", "{text}"}, ".wav"
}
