package nfe

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrMalformed indicates the input is not a well-formed NFe XML document in
// the fiscal namespace.
var ErrMalformed = errors.New("malformed NFe XML")

// ErrMissingInvoiceRoot indicates the document decoded but carries no infNFe
// element.
var ErrMissingInvoiceRoot = errors.New("infNFe element not found")

// Parse decodes an NFe XML document into a normalized Document.
//
// Both the authorized form (nfeProc, note + protocol) and the bare NFe
// envelope are accepted. Header fields are best-effort: a missing element
// yields the zero value, never an error. Line items are stricter: a det
// without a prod child, or a prod without an internal code (cProd), is
// dropped and reported in Document.Warnings.
func Parse(xmlData []byte) (*Document, error) {
	inf, err := decodeEnvelope(xmlData)
	if err != nil {
		return nil, err
	}

	doc := &Document{Invoice: extractInvoice(inf)}

	for i, d := range inf.Det {
		item, warn := extractLineItem(i, d)
		if warn != "" {
			log.Warn().Str("access_key", doc.Invoice.AccessKey).Msg(warn)
			doc.Warnings = append(doc.Warnings, warn)
			continue
		}
		doc.Items = append(doc.Items, item)
	}

	return doc, nil
}

// decodeEnvelope tries the procNFe wrapper first (the common SEFAZ-returned
// form), then the bare NFe envelope.
func decodeEnvelope(xmlData []byte) (*infNFe, error) {
	var proc procNFe
	if err := xml.Unmarshal(xmlData, &proc); err == nil {
		if proc.NFe.InfNFe.ID == "" {
			return nil, ErrMissingInvoiceRoot
		}
		return &proc.NFe.InfNFe, nil
	}

	var env envelope
	if err := xml.Unmarshal(xmlData, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.InfNFe.ID == "" {
		return nil, ErrMissingInvoiceRoot
	}
	return &env.InfNFe, nil
}

func extractInvoice(inf *infNFe) Invoice {
	return Invoice{
		AccessKey:   AccessKeyFromID(inf.ID),
		Number:      inf.Ide.NNF,
		Series:      inf.Ide.Serie,
		IssueDate:   parseIssueDate(inf.Ide.DhEmi),
		IssuerTaxID: inf.Emit.CNPJ,
		IssuerName:  inf.Emit.XNome,
		IssuerAddress: Address{
			Street:       inf.Emit.EnderEmit.XLgr,
			Number:       inf.Emit.EnderEmit.Nro,
			District:     inf.Emit.EnderEmit.XBairro,
			Municipality: inf.Emit.EnderEmit.XMun,
			State:        inf.Emit.EnderEmit.UF,
			PostalCode:   inf.Emit.EnderEmit.CEP,
		},
		TotalValue: safeFloat(inf.Total.ICMSTot.VNF),
	}
}

func extractLineItem(index int, d det) (LineItem, string) {
	if d.Prod == nil {
		return LineItem{}, fmt.Sprintf("line %d dropped: det element without prod", index+1)
	}
	if strings.TrimSpace(d.Prod.CProd) == "" {
		name := d.Prod.XProd
		if name == "" {
			name = "(unnamed)"
		}
		return LineItem{}, fmt.Sprintf("line %d dropped: product %s has no internal code", index+1, name)
	}

	return LineItem{
		InternalCode:  d.Prod.CProd,
		Description:   d.Prod.XProd,
		NcmCode:       d.Prod.NCM,
		Quantity:      safeFloat(d.Prod.QCom),
		UnitValue:     safeFloat(d.Prod.VUnCom),
		TotalValue:    safeFloat(d.Prod.VProd),
		UnitOfMeasure: d.Prod.UCom,
	}, ""
}

// AccessKeyFromID strips the literal "NFe" prefix from the infNFe Id
// attribute, leaving the 44-digit access key.
func AccessKeyFromID(id string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(id), "NFe"))
}

// OnlyDigits removes every character that is not a digit. Useful for access
// keys copied with spacing or punctuation.
func OnlyDigits(s string) string {
	var out []rune
	for _, r := range s {
		if r >= '0' && r <= '9' {
			out = append(out, r)
		}
	}
	return string(out)
}

// parseIssueDate parses the dhEmi timestamp (ISO-8601 with timezone) and
// truncates it to a calendar date. Absent or unparsable values fall back to
// today, matching how imports without an emission date are logged.
func parseIssueDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return truncateToDate(t)
		}
	}
	return truncateToDate(time.Now())
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// safeFloat converts decimal text best-effort; anything unparsable is 0.0.
func safeFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0.0
	}
	return v
}
