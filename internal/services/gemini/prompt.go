package gemini

import (
	"fmt"
	"strings"

	"byline/internal/media"
)

// Article is the immutable input to one enrichment request.
type Article struct {
	PostID int64
	Title  string
	Body   string
	Tags   []string
}

const (
	sectionTitle   = "## Novo Título:"
	sectionExcerpt = "## Novo Resumo:"
	sectionBody    = "## Novo Conteúdo:"
)

// BuildPrompt assembles the enrichment instructions for one article. The
// output sections and markup requirements here are load-bearing: Parse and
// Validate enforce exactly what this prompt demands.
func BuildPrompt(article Article, match *media.Match, domain string) string {
	var b strings.Builder

	b.WriteString("Você é um jornalista especializado em cultura pop e otimização de conteúdo para SEO.\n")
	b.WriteString("Reescreva o artigo abaixo para melhorar o ranqueamento em buscadores sem alterar os fatos.\n\n")

	b.WriteString("Regras de formatação, todas obrigatórias:\n")
	b.WriteString("1. Destaque os termos-chave com as tags <b> e </b>.\n")
	if len(article.Tags) > 0 && domain != "" {
		b.WriteString("2. Crie links internos para as tags do artigo no formato ")
		fmt.Fprintf(&b, "<a href=\"https://%s/tag/NOME-DA-TAG\">texto âncora</a>.\n", domain)
		b.WriteString("   Tags disponíveis: " + strings.Join(article.Tags, ", ") + "\n")
	}
	if match != nil {
		b.WriteString("3. Incorpore as mídias indicadas no bloco CONTEXTO DE MÍDIA dentro do novo conteúdo,\n")
		b.WriteString("   usando <img src=\"...\"> para imagens e <iframe src=\"...\"></iframe> para o trailer.\n")
	}
	b.WriteString("4. Mantenha o idioma português brasileiro e o tom jornalístico.\n")
	b.WriteString("5. Responda exatamente com as três seções abaixo, nesta ordem, sem texto adicional:\n")
	b.WriteString(sectionTitle + "\n" + sectionExcerpt + "\n" + sectionBody + "\n\n")

	if match != nil {
		b.WriteString("CONTEXTO DE MÍDIA:\n")
		fmt.Fprintf(&b, "- Título: %s (%s)\n", match.Title, match.Year)
		if match.PosterURL != "" {
			fmt.Fprintf(&b, "- Pôster: %s\n", match.PosterURL)
		}
		if match.Backdrop != "" {
			fmt.Fprintf(&b, "- Imagem de fundo: %s\n", match.Backdrop)
		}
		if trailer := match.TrailerURL(); trailer != "" {
			fmt.Fprintf(&b, "- Trailer: %s\n", trailer)
		}
		b.WriteString("\n")
	}

	b.WriteString("ARTIGO ORIGINAL:\n")
	fmt.Fprintf(&b, "Título: %s\n\n", article.Title)
	b.WriteString(article.Body)
	b.WriteString("\n")

	return b.String()
}
