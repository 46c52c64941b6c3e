// Package requirement defines the requirement list the installer checks
// against: its record type, the probed Value, and the YAML and legacy XML
// sources it is loaded from.
package requirement
