// Package settings stores the dashboard's singleton configuration record.
package settings
