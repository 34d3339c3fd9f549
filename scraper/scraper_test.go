package scraper

import (
	"os"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cnpjscraper/record"
)

const resultURL = "https://solucoes.receita.fazenda.gov.br/servicos/cnpjreva/Cnpjreva_Comprovante.asp"

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/comprovante.html")
	require.NoError(t, err)
	return string(data)
}

func TestScrapeHTML_FullPage(t *testing.T) {
	res, err := DefaultService.ScrapeHTML(loadFixture(t), resultURL)
	require.NoError(t, err)

	want := record.Record{
		"NÚMERO DE INSCRIÇÃO":                          "24.276.421/0001-08",
		"DATA DE ABERTURA":                             "14/01/2016",
		"NOME EMPRESARIAL":                             "EMPRESA EXEMPLO COMERCIO LTDA",
		"TÍTULO DO ESTABELECIMENTO (NOME DE FANTASIA)": "********",
		"PORTE": "ME",
		"CÓDIGO E DESCRIÇÃO DA ATIVIDADE ECONÔMICA PRINCIPAL": "47.51-2-01 - Comércio varejista especializado de equipamentos e suprimentos de informática",
		"LOGRADOURO":          "R EXEMPLO",
		"NÚMERO":              "100",
		"COMPLEMENTO":         "SALA 2",
		"CEP":                 "01.001-000",
		"BAIRRO/DISTRITO":     "SE",
		"MUNICÍPIO":           "SAO PAULO",
		"UF":                  "SP",
		"ENDEREÇO ELETRÔNICO": "CONTATO@EXEMPLO.COM.BR",
		"TELEFONE":            "(11) 3333-4444",
	}
	assert.Equal(t, want, res.Record)
	assert.Empty(t, res.Missing)
	assert.False(t, res.Partial())
	assert.Equal(t, resultURL, res.URL)
}

func TestScrapeHTML_IgnoresLabelsOutsideAllowList(t *testing.T) {
	res, err := DefaultService.ScrapeHTML(loadFixture(t), resultURL)
	require.NoError(t, err)

	allowed := make(map[string]bool)
	for _, l := range ReceitaRules.Labels {
		allowed[l] = true
	}
	for label := range res.Record {
		assert.True(t, allowed[label], "unexpected label %q", label)
	}
	assert.NotContains(t, res.Record, "SITUAÇÃO CADASTRAL")
	assert.NotContains(t, res.Record, "CÓDIGO E DESCRIÇÃO DA NATUREZA JURÍDICA")
}

func TestScrapeHTML_OnlyNomeEmpresarial(t *testing.T) {
	html := `<html><body><table><tr><td>
		<font style="font-size: 6pt">NOME EMPRESARIAL</font>
		<font style="font-size: 8pt"><b>EMPRESA UNICA SA</b></font>
	</td></tr></table></body></html>`

	res, err := DefaultService.ScrapeHTML(html, resultURL)
	require.NoError(t, err)
	assert.Equal(t, record.Record{"NOME EMPRESARIAL": "EMPRESA UNICA SA"}, res.Record)
	assert.Len(t, res.Missing, 14)
	assert.NotContains(t, res.Missing, "NOME EMPRESARIAL")
	assert.True(t, res.Partial())
}

func TestScrapeHTML_EmptyPage(t *testing.T) {
	res, err := DefaultService.ScrapeHTML("<html><body><p>Captcha inválido</p></body></html>", resultURL)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Equal(t, ReceitaRules.Labels, res.Missing)
}

func TestScrapeHTML_CaptionWithoutValueIsSkipped(t *testing.T) {
	html := `<table><tr>
		<td><font style="font-size: 6pt">PORTE</font></td>
		<td><font style="font-size: 6pt">UF</font><font style="font-size: 8pt"><b>RJ</b></font></td>
	</tr></table>`

	res, err := DefaultService.ScrapeHTML(html, resultURL)
	require.NoError(t, err)
	assert.Equal(t, record.Record{"UF": "RJ"}, res.Record)
	assert.Contains(t, res.Missing, "PORTE")
}

func TestScrapeHTML_ExactCaptionMatchOnly(t *testing.T) {
	html := `<table><tr>
		<td><font style="font-size: 6pt">uf</font><font style="font-size: 8pt"><b>lower</b></font></td>
		<td><font style="font-size: 6pt">UF:</font><font style="font-size: 8pt"><b>colon</b></font></td>
		<td><font style="font-size: 8pt">UF</font><font style="font-size: 8pt"><b>wrong style</b></font></td>
	</tr></table>`

	res, err := DefaultService.ScrapeHTML(html, resultURL)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestScrapeHTML_RepeatedCaptionKeepsLastValue(t *testing.T) {
	html := `<table><tr>
		<td><font style="font-size: 6pt">UF</font><font style="font-size: 8pt"><b>SP</b></font></td>
		<td><font style="font-size: 6pt">UF</font><font style="font-size: 8pt"><b>RJ</b></font></td>
	</tr></table>`

	res, err := DefaultService.ScrapeHTML(html, resultURL)
	require.NoError(t, err)
	assert.Equal(t, "RJ", res.Record["UF"])
	assert.NotContains(t, res.Missing, "UF")
}

func TestRegistry_FindScraper(t *testing.T) {
	receita := NewLabelScraper(ReceitaRules)
	fallback := NewLabelScraper(RuleSet{Name: "other"})

	r := NewRegistry()
	r.Register(receita)
	assert.Nil(t, r.FindScraper("https://example.com"))

	r.SetFallback(fallback)
	assert.Same(t, receita, r.FindScraper(resultURL))
	assert.Same(t, fallback, r.FindScraper("https://example.com/page"))
	assert.Same(t, fallback, r.FindScraper(""))
}

func TestService_NoScraper(t *testing.T) {
	s := NewService(NewRegistry())
	_, err := s.ScrapeHTML("<html></html>", resultURL)
	assert.Error(t, err)
}

func TestLabelScraper_CustomRules(t *testing.T) {
	rules := RuleSet{
		Name:    "semantic",
		Caption: "dt",
		Value:   "dd",
		Labels:  []string{"Razão social", "Situação"},
	}
	html := `<dl><div><dt>Razão social</dt><dd> ACME </dd></div><div><dt>Outro</dt><dd>x</dd></div></dl>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	res, err := NewLabelScraper(rules).Scrape(doc, "")
	require.NoError(t, err)
	assert.Equal(t, record.Record{"Razão social": "ACME"}, res.Record)
	assert.Equal(t, []string{"Situação"}, res.Missing)
}
