package cli

import "github.com/charmbracelet/huh"

// TerminalConfirm prompts on the controlling terminal. Wired as
// Dependencies.Confirm when stdin is interactive.
func TerminalConfirm(prompt string) (bool, error) {
	confirmed := false
	field := huh.NewConfirm().
		Title(prompt).
		Value(&confirmed)
	form := huh.NewForm(huh.NewGroup(field)).WithShowHelp(false)
	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}
