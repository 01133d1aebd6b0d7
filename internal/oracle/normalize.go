package oracle

import (
	"strings"

	"proptoken/internal/oracle/models"
)

// Fallbacks applied when a submission leaves a probe input undeclared.
var (
	DefaultCoordinates = models.Coordinates{Lat: 28.4949, Lng: 77.0887}
	DefaultCity        = "Gurugram"
	DefaultRegistryID  = "REG-GGM-12345"
	DefaultOwnerName   = "ABC Realty Pvt Ltd"
)

// Field names reported in Normalized.Defaulted.
const (
	FieldCoordinates     = "coordinates"
	FieldCity            = "city"
	FieldRegistryID      = "registry_id"
	FieldOwnerName       = "owner_name"
	FieldActivityAddress = "activity_address"
)

// Normalize resolves every probe input from the claim. Fallback table:
//
//	coordinates      -> (28.4949, 77.0887)
//	city             -> "Gurugram"
//	registry_id      -> first declared id, else "REG-GGM-12345"
//	owner_name       -> owner name, else owner DID, else "ABC Realty Pvt Ltd"
//	activity_address -> address, else the resolved city
func Normalize(claim models.Claim) models.Normalized {
	var n models.Normalized

	if claim.Coordinates != nil {
		n.Coordinates = *claim.Coordinates
	} else {
		n.Coordinates = DefaultCoordinates
		n.Defaulted = append(n.Defaulted, FieldCoordinates)
	}

	n.City = strings.TrimSpace(claim.City)
	if n.City == "" {
		n.City = DefaultCity
		n.Defaulted = append(n.Defaulted, FieldCity)
	}

	for _, rid := range claim.RegistryIDs {
		if rid = strings.TrimSpace(rid); rid != "" {
			n.RegistryID = rid
			break
		}
	}
	if n.RegistryID == "" {
		n.RegistryID = DefaultRegistryID
		n.Defaulted = append(n.Defaulted, FieldRegistryID)
	}

	switch {
	case strings.TrimSpace(claim.OwnerName) != "":
		n.OwnerName = strings.TrimSpace(claim.OwnerName)
	case strings.TrimSpace(claim.OwnerDID) != "":
		n.OwnerName = strings.TrimSpace(claim.OwnerDID)
	default:
		n.OwnerName = DefaultOwnerName
		n.Defaulted = append(n.Defaulted, FieldOwnerName)
	}

	n.ActivityAddress = strings.TrimSpace(claim.Address)
	if n.ActivityAddress == "" {
		n.ActivityAddress = n.City
		n.Defaulted = append(n.Defaulted, FieldActivityAddress)
	}

	return n
}
