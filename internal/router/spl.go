package router

import "fmt"

// Canned SPL templates. Each scopes to index=main and the caller's
// time window via earliest=-<window>.

func BuildFailedLoginsSPL(window string) string {
	return fmt.Sprintf(
		`search index=main "Failed password" earliest=-%s `+
			"| stats count as failed_attempts by host user "+
			"| sort - failed_attempts",
		window)
}

func BuildErrorsSPL(window string) string {
	return fmt.Sprintf(
		"search index=main (error OR ERROR OR exception OR Exception) earliest=-%s "+
			"| stats count as error_count by host source sourcetype "+
			"| sort - error_count",
		window)
}

func BuildSuspiciousProcessSPL(window string) string {
	return fmt.Sprintf(
		"search index=main (process OR cmdline OR CommandLine) earliest=-%s "+
			`| regex _raw="(?i)(powershell.*-enc|nc\s+-e|wget\s+http|curl\s+http|chmod\s+777)" `+
			"| stats count by host user process cmdline "+
			"| sort - count",
		window)
}
