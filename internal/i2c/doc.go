// Package i2c provides I2C master access through /dev/i2c-N on Linux.
//
// Transfers go through the I2C_RDWR ioctl so a register pointer write and the
// following read share one transaction (repeated start). The HMC5883L relies
// on this for burst reads of its data registers, and 24Cxx EEPROMs for
// random reads.
package i2c
