// Package remote opens password-authenticated SSH sessions and runs shell
// commands on the deployment host.
//
// Sessions only ever authenticate with the password they are given (answered
// for both the "password" and "keyboard-interactive" methods); no key files or
// agents are consulted. Host keys are handled by a HostKeyPolicy:
//
//	accept-new  unknown keys are trusted and recorded, changed keys are rejected
//	strict      only keys already present in known_hosts are accepted
//	insecure    host keys are not verified at all
//
// Commands run through Session.Run return their captured output. A non-zero
// remote exit status is reported as a *CommandError wrapping ErrCommandFailed.
package remote
