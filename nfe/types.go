package nfe

import (
	"encoding/xml"
	"time"
)

// Namespace is the fiscal namespace every NFe document must use.
const Namespace = "http://www.portalfiscal.inf.br/nfe"

// Invoice is the normalized header of one NFe document. It is transient:
// it lives only for the duration of a single import run.
type Invoice struct {
	AccessKey     string
	Number        string
	Series        string
	IssueDate     time.Time
	IssuerTaxID   string
	IssuerName    string
	IssuerAddress Address
	TotalValue    float64
}

// Address holds the issuer address (enderEmit). All fields optional.
type Address struct {
	Street       string
	Number       string
	District     string
	Municipality string
	State        string
	PostalCode   string
}

// LineItem is one product detail (det/prod) from the document, in document
// order. Items without an internal code never make it into a Document.
type LineItem struct {
	InternalCode  string
	Description   string
	NcmCode       string
	Quantity      float64
	UnitValue     float64
	TotalValue    float64
	UnitOfMeasure string
}

// Document is the parse result: header, ordered line items and the warnings
// produced for lines that were dropped during parsing.
type Document struct {
	Invoice  Invoice
	Items    []LineItem
	Warnings []string
}

// ----------------------------------------------------------------------------
// Raw XML shapes. Tags are namespace-qualified so documents outside the
// fiscal namespace fail to decode instead of yielding empty structs.
// ----------------------------------------------------------------------------

// procNFe is the authorized document as returned by SEFAZ (note + protocol).
type procNFe struct {
	XMLName xml.Name `xml:"http://www.portalfiscal.inf.br/nfe nfeProc"`
	NFe     envelope `xml:"http://www.portalfiscal.inf.br/nfe NFe"`
}

// envelope is the bare NFe without the authorization protocol.
type envelope struct {
	XMLName xml.Name `xml:"http://www.portalfiscal.inf.br/nfe NFe"`
	InfNFe  infNFe   `xml:"http://www.portalfiscal.inf.br/nfe infNFe"`
}

type infNFe struct {
	ID    string `xml:"Id,attr"`
	Ide   ide    `xml:"http://www.portalfiscal.inf.br/nfe ide"`
	Emit  emit   `xml:"http://www.portalfiscal.inf.br/nfe emit"`
	Det   []det  `xml:"http://www.portalfiscal.inf.br/nfe det"`
	Total total  `xml:"http://www.portalfiscal.inf.br/nfe total"`
}

type ide struct {
	Serie string `xml:"http://www.portalfiscal.inf.br/nfe serie"`
	NNF   string `xml:"http://www.portalfiscal.inf.br/nfe nNF"`
	DhEmi string `xml:"http://www.portalfiscal.inf.br/nfe dhEmi"`
}

type emit struct {
	CNPJ      string    `xml:"http://www.portalfiscal.inf.br/nfe CNPJ"`
	XNome     string    `xml:"http://www.portalfiscal.inf.br/nfe xNome"`
	EnderEmit enderEmit `xml:"http://www.portalfiscal.inf.br/nfe enderEmit"`
}

type enderEmit struct {
	XLgr    string `xml:"http://www.portalfiscal.inf.br/nfe xLgr"`
	Nro     string `xml:"http://www.portalfiscal.inf.br/nfe nro"`
	XBairro string `xml:"http://www.portalfiscal.inf.br/nfe xBairro"`
	XMun    string `xml:"http://www.portalfiscal.inf.br/nfe xMun"`
	UF      string `xml:"http://www.portalfiscal.inf.br/nfe UF"`
	CEP     string `xml:"http://www.portalfiscal.inf.br/nfe CEP"`
}

type det struct {
	NItem string `xml:"nItem,attr"`
	Prod  *prod  `xml:"http://www.portalfiscal.inf.br/nfe prod"`
}

type prod struct {
	CProd  string `xml:"http://www.portalfiscal.inf.br/nfe cProd"`
	XProd  string `xml:"http://www.portalfiscal.inf.br/nfe xProd"`
	NCM    string `xml:"http://www.portalfiscal.inf.br/nfe NCM"`
	UCom   string `xml:"http://www.portalfiscal.inf.br/nfe uCom"`
	QCom   string `xml:"http://www.portalfiscal.inf.br/nfe qCom"`
	VUnCom string `xml:"http://www.portalfiscal.inf.br/nfe vUnCom"`
	VProd  string `xml:"http://www.portalfiscal.inf.br/nfe vProd"`
}

type total struct {
	ICMSTot icmsTot `xml:"http://www.portalfiscal.inf.br/nfe ICMSTot"`
}

type icmsTot struct {
	VNF string `xml:"http://www.portalfiscal.inf.br/nfe vNF"`
}
