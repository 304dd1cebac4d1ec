// Package types defines the records shared by the agent's detector, prober,
// shipper and status API. Optional measurements are pointers: nil means the
// value could not be obtained, which is distinct from a measured zero.
package types
