// Package stack implements the provisionable service components:
// the Ubuntu system helper and the MariaDB, Apache2 and PHP components
// installed on a shared target.
//
// Every component follows the same lifecycle: it is configured zero or
// more times, installed once, then started, stopped or restarted.
// Configuration after install is rejected, as are conflicting values
// for the same option supplied by two composers. Start and Stop are
// gated on the observed started flag; Restart is always unconditional
// so configuration changes can be force-applied.
package stack
