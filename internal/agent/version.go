package agent

// Version is the engine release tag stamped into payload metadata.
const Version = "0.4.2"
