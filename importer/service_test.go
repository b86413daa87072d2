package importer

import (
	"context"
	"errors"
	"testing"
)

func TestImportRejectsUnusableInputBeforeOpeningTransaction(t *testing.T) {
	// A nil DB proves these rejections happen before any database work:
	// reaching the transaction would panic.
	svc := NewService(nil)

	keyless := `<NFe xmlns="http://www.portalfiscal.inf.br/nfe">
  <infNFe Id="NFe">
    <ide><nNF>9</nNF><serie>1</serie></ide>
  </infNFe>
</NFe>`

	cases := map[string][]byte{
		"empty upload":            nil,
		"not xml":                 []byte("not an xml document"),
		"empty access key in NFe": []byte(keyless),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Import(context.Background(), testCtx, input, "nota.xml")
			var malformed *MalformedInputError
			if !errors.As(err, &malformed) {
				t.Errorf("Import error = %v, want MalformedInputError", err)
			}
		})
	}
}
