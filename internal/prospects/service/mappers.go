package service

import (
	"premunia_crm_backend/internal/prospects/repository"
	"premunia_crm_backend/internal/prospects/transport"
	"premunia_crm_backend/internal/search"
)

func toProspectResponse(p repository.Prospect) transport.ProspectResponse {
	resp := transport.ProspectResponse{
		ID:               p.ID,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		Email:            p.Email,
		Phone:            p.Phone,
		Age:              p.Age,
		Address:          p.Address,
		City:             p.City,
		PostalCode:       p.PostalCode,
		BudgetMonthly:    p.BudgetMonthly,
		HealthStatus:     p.HealthStatus,
		UrgencyLevel:     p.UrgencyLevel,
		Score:            p.Score,
		Segment:          p.Segment,
		Status:           p.Status,
		AssignedTo:       p.AssignedTo,
		Source:           p.Source,
		Notes:            p.Notes,
		CurrentInsurance: p.CurrentInsurance,
		LastContact:      p.LastContact,
		NextFollowUp:     p.NextFollowUp,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if p.BirthDate != nil {
		resp.BirthDate = &transport.Date{Time: *p.BirthDate}
	}
	return resp
}

func toDocument(p repository.Prospect) search.Document {
	doc := search.Document{
		ID:         p.ID.String(),
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Email:      deref(p.Email),
		Phone:      deref(p.Phone),
		City:       deref(p.City),
		PostalCode: deref(p.PostalCode),
		Notes:      deref(p.Notes),
		Segment:    p.Segment,
		Status:     p.Status,
		Score:      p.Score,
		CreatedAt:  p.CreatedAt,
	}
	if p.AssignedTo != nil {
		doc.AssignedTo = p.AssignedTo.String()
	}
	return doc
}

func fullName(p repository.Prospect) string {
	return p.FirstName + " " + p.LastName
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
