// Package manufacturing installs the factory image on first power-on.
//
// A device leaves the factory with an image package in internal flash and an
// uninitialized external flash. On the first cold boot the package is copied
// into slot A, the image registry is created with A as primary, the external
// flash sentinel is written and the system is reset.
package manufacturing
