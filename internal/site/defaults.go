package site

import "time"

const (
	DefaultCentralID   = "central"
	DefaultRiversideID = "riverside"
	DefaultNorthsideID = "northside"
)

// DefaultSites is the built-in registry used when nothing usable is persisted.
func DefaultSites() map[string]Site {
	created := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	sites := []Site{
		{
			ID:           DefaultCentralID,
			Name:         "MedLinkX Central Hospital",
			ShortName:    "Central",
			FacilityCode: "CEN",
			Address:      "100 Main Street, Downtown",
			Contact:      Contact{Phone: "+1-555-0100", Email: "central@medlinkx.io", Website: "https://central.medlinkx.io"},
			BedCount:     450,
			Departments:  []string{"Emergency", "Cardiology", "Neurology", "Pediatrics", "Surgery", "ICU"},
			Theme:        Theme{Primary: "#1e40af", Secondary: "#3b82f6", Accent: "#60a5fa"},
			Status:       StatusActive,
			CreatedAt:    created,
			CreatedBy:    "system",
		},
		{
			ID:           DefaultRiversideID,
			Name:         "Riverside Medical Center",
			ShortName:    "Riverside",
			FacilityCode: "RIV",
			Address:      "250 River Road, Eastside",
			Contact:      Contact{Phone: "+1-555-0200", Email: "riverside@medlinkx.io"},
			BedCount:     280,
			Departments:  []string{"Emergency", "Orthopedics", "Maternity", "Oncology"},
			Theme:        Theme{Primary: "#047857", Secondary: "#10b981", Accent: "#34d399"},
			Status:       StatusActive,
			CreatedAt:    created.Add(time.Hour),
			CreatedBy:    "system",
		},
		{
			ID:           DefaultNorthsideID,
			Name:         "Northside Community Clinic",
			ShortName:    "Northside",
			FacilityCode: "NOR",
			Address:      "12 Hill Avenue, Northside",
			Contact:      Contact{Phone: "+1-555-0300"},
			BedCount:     60,
			Departments:  []string{"General Practice", "Pediatrics", "Radiology"},
			Theme:        Theme{Primary: "#7c2d12", Secondary: "#ea580c", Accent: "#fb923c"},
			Status:       StatusActive,
			CreatedAt:    created.Add(2 * time.Hour),
			CreatedBy:    "system",
		},
	}

	out := make(map[string]Site, len(sites))
	for _, s := range sites {
		out[s.ID] = s
	}
	return out
}
