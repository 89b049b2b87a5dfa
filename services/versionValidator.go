package services

import "obpayments-backend/utils"

// SupportedVersions are the OB API versions this server exposes routes for,
// oldest first.
var SupportedVersions = []utils.OBVersion{
	utils.MustParseOBVersion("v3.1.10"),
	utils.MustParseOBVersion("v4.0"),
}

// CheckVersionAccess decides whether a resource created under API version
// `resource` may be read through a request made under `requested`. A
// resource is visible from its creation version and every later version;
// older versions must not see it, since response shapes are not guaranteed
// backward-compatible.
func CheckVersionAccess(resource, requested utils.OBVersion) error {
	if requested.Compare(resource) < 0 {
		return &VersionConflictError{Actual: resource, Requested: requested}
	}
	return nil
}
