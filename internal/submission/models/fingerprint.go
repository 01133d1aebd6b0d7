package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	oraclemodels "proptoken/internal/oracle/models"
)

type fingerprintEvidence struct {
	Category   oraclemodels.Category `json:"category"`
	Source     string                `json:"source"`
	Signal     string                `json:"signal"`
	Confidence float64               `json:"confidence"`
}

type fingerprintDoc struct {
	AssetName      string                `json:"asset_name"`
	Category       Category              `json:"category"`
	OwnerName      string                `json:"owner_name"`
	OwnerDID       string                `json:"owner_did"`
	Location       Location              `json:"location"`
	RegistryIDs    []string              `json:"registry_ids"`
	Specifications Specifications        `json:"specifications"`
	Financials     Financials            `json:"financials"`
	Evidence       []fingerprintEvidence `json:"evidence"`
}

// Fingerprint hashes a submission's declared content together with the
// evidence gathered for it. Ids, status and timestamps are excluded, so two
// submissions of the same asset that saw the same evidence collide.
func Fingerprint(sub *Submission, out *oraclemodels.Outcome) string {
	doc := fingerprintDoc{
		AssetName:      sub.AssetName,
		Category:       sub.Category,
		OwnerName:      sub.OwnerName,
		OwnerDID:       sub.OwnerDID,
		Location:       sub.Location,
		RegistryIDs:    sub.RegistryIDs,
		Specifications: sub.Specifications,
		Financials:     sub.Financials,
	}
	if out != nil {
		for _, r := range []oraclemodels.Result{out.Existence, out.Ownership, out.Activity} {
			for _, ev := range r.Evidences {
				doc.Evidence = append(doc.Evidence, fingerprintEvidence{
					Category:   r.Category,
					Source:     ev.Source,
					Signal:     ev.DerivedSignal,
					Confidence: ev.Confidence,
				})
			}
		}
	}
	return Digest(doc)
}

// Digest returns the hex sha256 of v's JSON encoding. Map keys encode sorted,
// so the digest is stable for equal values.
func Digest(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
