// Package device is the registry of user-created virtual KNX devices.
//
// A virtual device groups entities under one identity (a wall box, an
// actuator channel block). Entities reference a device by id; the
// runtime checks existence through the registry before registering an
// entity that names a parent device.
package device
