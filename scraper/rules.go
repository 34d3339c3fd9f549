package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cnpjscraper/record"
)

// RuleSet describes how to find labeled values on a result page.
//
// Caption selects the elements holding field captions. A caption whose
// trimmed text equals one of Labels is paired with the first element
// matching Value inside the caption's parent.
type RuleSet struct {
	Name    string
	Host    string
	Caption string
	Value   string
	Labels  []string
}

// ReceitaRules matches the "Comprovante de Inscrição e de Situação
// Cadastral" page. Captions are 6pt fonts, values are bold 8pt fonts.
var ReceitaRules = RuleSet{
	Name:    "receita-cnpjreva",
	Host:    "solucoes.receita.fazenda.gov.br",
	Caption: `font[style*="font-size: 6pt"]`,
	Value:   `font[style*="font-size: 8pt"] b`,
	Labels: []string{
		"NÚMERO DE INSCRIÇÃO",
		"DATA DE ABERTURA",
		"NOME EMPRESARIAL",
		"TÍTULO DO ESTABELECIMENTO (NOME DE FANTASIA)",
		"PORTE",
		"CÓDIGO E DESCRIÇÃO DA ATIVIDADE ECONÔMICA PRINCIPAL",
		"LOGRADOURO",
		"NÚMERO",
		"COMPLEMENTO",
		"CEP",
		"BAIRRO/DISTRITO",
		"MUNICÍPIO",
		"UF",
		"ENDEREÇO ELETRÔNICO",
		"TELEFONE",
	},
}

// LabelScraper applies a RuleSet.
type LabelScraper struct {
	rules   RuleSet
	allowed map[string]struct{}
}

// NewLabelScraper builds a scraper for rules.
func NewLabelScraper(rules RuleSet) *LabelScraper {
	allowed := make(map[string]struct{}, len(rules.Labels))
	for _, l := range rules.Labels {
		allowed[l] = struct{}{}
	}
	return &LabelScraper{rules: rules, allowed: allowed}
}

// CanHandle matches on the rule set's host.
func (s *LabelScraper) CanHandle(url string) bool {
	return s.rules.Host != "" && hostOf(url) == s.rules.Host
}

// Scrape collects every allowed caption that has a value next to it.
// Captions outside the allow-list are ignored. A repeated caption
// overwrites the value found earlier on the page.
func (s *LabelScraper) Scrape(doc *goquery.Document, url string) (*Result, error) {
	rec := make(record.Record)

	doc.Find(s.rules.Caption).Each(func(i int, caption *goquery.Selection) {
		label := strings.TrimSpace(caption.Text())
		if _, ok := s.allowed[label]; !ok {
			return
		}

		value := caption.Parent().Find(s.rules.Value).First()
		if value.Length() == 0 {
			return
		}
		rec[label] = strings.TrimSpace(value.Text())
	})

	var missing []string
	for _, l := range s.rules.Labels {
		if _, ok := rec[l]; !ok {
			missing = append(missing, l)
		}
	}

	return &Result{URL: url, Record: rec, Missing: missing}, nil
}
