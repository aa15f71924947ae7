// Package catalog lists the services offered and the documents each needs.
package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	FirstRegistration = "Primeiro Emplacamento"
	MercosulPlate     = "Placa Mercosul"
	DuplicateDocument = "Segunda Via"
	OwnershipTransfer = "Transferência Veicular"
)

// Service describes one entry shown on the selection step.
type Service struct {
	Name              string   `json:"nome"`
	RequiredDocuments []string `json:"documentos"`
	FeeCents          int64    `json:"taxa_centavos"`
}

var services = []Service{
	{
		Name: FirstRegistration,
		RequiredDocuments: []string{
			"Nota fiscal do veículo",
			"Documento de identidade com foto",
			"Comprovante de residência",
		},
		FeeCents: 28500,
	},
	{
		Name: MercosulPlate,
		RequiredDocuments: []string{
			"CRLV",
			"Documento de identidade com foto",
		},
		FeeCents: 21900,
	},
	{
		Name: DuplicateDocument,
		RequiredDocuments: []string{
			"Boletim de ocorrência ou declaração de extravio",
			"Documento de identidade com foto",
		},
		FeeCents: 15990,
	},
	{
		Name: OwnershipTransfer,
		RequiredDocuments: []string{
			"CRV assinado e com firma reconhecida",
			"Documento de identidade com foto do comprador",
			"Comprovante de residência do comprador",
		},
		FeeCents: 34900,
	},
}

// All returns the catalog in display order.
func All() []Service {
	out := make([]Service, len(services))
	for i, s := range services {
		s.RequiredDocuments = append([]string(nil), s.RequiredDocuments...)
		out[i] = s
	}
	return out
}

// Lookup finds a service by name, ignoring case and accents.
func Lookup(name string) (Service, bool) {
	key := foldName(name)
	if key == "" {
		return Service{}, false
	}
	for _, s := range services {
		if foldName(s.Name) == key {
			s.RequiredDocuments = append([]string(nil), s.RequiredDocuments...)
			return s, true
		}
	}
	return Service{}, false
}

// RequiredDocuments returns the document list for a service, or nil.
func RequiredDocuments(name string) []string {
	s, ok := Lookup(name)
	if !ok {
		return nil
	}
	return s.RequiredDocuments
}

func foldName(name string) string {
	decomposed := norm.NFD.String(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
