package backup

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/martinsuchenak/fmcsweep/internal/model"
)

func encodeGroup(r model.GroupRecord) ([]string, error) {
	objects := r.Objects
	if objects == nil {
		objects = []model.MemberRef{}
	}
	literals := r.Literals
	if literals == nil {
		literals = []model.Literal{}
	}
	objectsCell, err := json.Marshal(objects)
	if err != nil {
		return nil, fmt.Errorf("encoding members of %s: %w", r.Name, err)
	}
	literalsCell, err := json.Marshal(literals)
	if err != nil {
		return nil, fmt.Errorf("encoding literals of %s: %w", r.Name, err)
	}
	return []string{r.Name, r.Description, r.Type, string(objectsCell), string(literalsCell), strconv.Itoa(r.Pass)}, nil
}

func decodeGroup(row []string) (model.GroupRecord, error) {
	rec := model.GroupRecord{
		Name:        row[0],
		Description: row[1],
		Type:        strings.TrimSpace(row[2]),
	}

	objects, err := decodeMembers(row[3])
	if err != nil {
		return rec, fmt.Errorf("objects of %s: %w", rec.Name, err)
	}
	rec.Objects = objects

	if err := decodeCell(row[4], &rec.Literals); err != nil {
		return rec, fmt.Errorf("literals of %s: %w", rec.Name, err)
	}

	pass, err := strconv.Atoi(strings.TrimSpace(row[5]))
	if err != nil {
		return rec, fmt.Errorf("pass of %s: %w", rec.Name, err)
	}
	rec.Pass = pass
	return rec, nil
}

// decodeMembers accepts member records or, from older backups, bare names
func decodeMembers(cell string) ([]model.MemberRef, error) {
	var raw []json.RawMessage
	if err := decodeCell(cell, &raw); err != nil {
		return nil, err
	}
	members := make([]model.MemberRef, 0, len(raw))
	for _, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			members = append(members, model.MemberRef{Name: name})
			continue
		}
		var ref model.MemberRef
		if err := json.Unmarshal(item, &ref); err != nil {
			return nil, err
		}
		members = append(members, ref)
	}
	return members, nil
}

// decodeCell parses a JSON cell. Older backups hold list literals quoted with
// single quotes; those are converted before parsing.
func decodeCell(cell string, v any) error {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	err := json.Unmarshal([]byte(cell), v)
	if err == nil {
		return nil
	}
	if strings.Contains(cell, "'") {
		if legacyErr := json.Unmarshal([]byte(strings.ReplaceAll(cell, "'", `"`)), v); legacyErr == nil {
			return nil
		}
	}
	return err
}
