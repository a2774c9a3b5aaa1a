// Package ssh is the transport of the remote actuator. A Client keeps one
// SSH connection to an actuation host, runs commands in sessions on it and
// stages files through SFTP.
//
// Host keys are verified against a known_hosts file unless explicitly
// disabled. Errors are *TransportError values; IsTemporary tells network
// failures, which are worth retrying, from rejected credentials or host keys.
package ssh
