package main

import "testing"

func TestSubcommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"run":       false,
		"dashboard": false,
		"schedule":  false,
		"forget":    false,
		"amnesia":   false,
		"doctor":    false,
		"version":   false,
	}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestScheduleSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range scheduleCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"list", "run", "logs"} {
		if !names[want] {
			t.Errorf("schedule subcommand %q not registered", want)
		}
	}
}

func TestTruncatePrompt(t *testing.T) {
	if got := truncatePrompt("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncatePrompt("0123456789", 5); got != "0123…" {
		t.Errorf("got %q", got)
	}
}
