package version

import "bytes"

// Application version
var applicationVersion string = "0.1.0"

// Build commit
var buildCommit string = "0x0000"

// Build time
var buildTime string = "Mon Oct 16 09:00:00 UTC 2026"

// Supported chain protocols
var supportedProtocols = []string{
	"Ethereum (keccak256 message ids)",
	"Cardano (blake2b message ids)",
}

// Supported security modules
var supportedModules = []string{
	"Message id multisig",
	"Merkle root multisig",
	"Null",
}

// Checkpoint storage backends
var checkpointSyncers = []string{
	"Local filesystem (file://)",
	"Redis (redis://)",
}

var RootCmdVersion string = prepareVersionString()

func prepareVersionString() string {
	var buffer bytes.Buffer
	buffer.WriteString(applicationVersion + " build " + buildCommit)
	buffer.WriteString("\nCompiled on: " + buildTime)
	for _, v := range supportedProtocols {
		buffer.WriteString("\n+ [Protocol]          " + v)
	}
	for _, v := range supportedModules {
		buffer.WriteString("\n+ [Security Module]   " + v)
	}
	for _, v := range checkpointSyncers {
		buffer.WriteString("\n+ [Checkpoint Syncer] " + v)
	}
	return buffer.String()
}
