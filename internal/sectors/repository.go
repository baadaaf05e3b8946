package sectors

import (
	"context"
	"fmt"

	"sectorindex/internal/contracts"
	"sectorindex/pkg/database"
)

// Repository implements contracts.SectorRepository on PostgreSQL.
type Repository struct {
	db *database.DB
}

// NewRepository creates a new sector metadata repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// FetchAll loads the full sector table: active sector definitions plus
// their constituent companies. A membership row referencing a sector that
// does not exist at all is treated as data corruption and fails the fetch;
// memberships of inactive sectors are silently excluded.
func (r *Repository) FetchAll(ctx context.Context) (*contracts.SectorTable, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT sector_code, sector_name, is_active FROM sectors`)
	if err != nil {
		return nil, fmt.Errorf("query sectors: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	table := &contracts.SectorTable{
		Sectors: make(map[string]contracts.SectorInfo),
		Members: make(map[string][]string),
	}

	for rows.Next() {
		var info contracts.SectorInfo
		if err := rows.Scan(&info.Code, &info.Name, &info.Active); err != nil {
			return nil, fmt.Errorf("scan sector: %w", err)
		}
		known[info.Code] = true
		if info.Active {
			table.Sectors[info.Code] = info
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sectors: %w", err)
	}

	memberRows, err := r.db.Pool.Query(ctx,
		`SELECT sector_code, company FROM sector_members ORDER BY sector_code, company`)
	if err != nil {
		return nil, fmt.Errorf("query sector members: %w", err)
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var sectorCode, company string
		if err := memberRows.Scan(&sectorCode, &company); err != nil {
			return nil, fmt.Errorf("scan sector member: %w", err)
		}

		if !known[sectorCode] {
			return nil, fmt.Errorf("company %s in sector %s: %w",
				company, sectorCode, contracts.ErrUnknownSector)
		}
		if _, active := table.Sectors[sectorCode]; !active {
			continue
		}
		table.Members[sectorCode] = append(table.Members[sectorCode], company)
	}
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sector members: %w", err)
	}

	return table, nil
}
