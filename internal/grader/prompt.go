package grader

import "fmt"

const ocrPrompt = "Extraia todo o texto desta imagem de redação com máxima precisão. " +
	"Mantenha a formatação original, preservando quebras de linha e parágrafos. " +
	"Retorne APENAS o texto extraído, sem comentários, explicações ou formatação adicional."

// rubricPrompt embeds the full ENEM scoring rubric (five competencies,
// six bands each) and demands a bare JSON object back.
func rubricPrompt(topic, essayText string) string {
	if topic == "" {
		topic = "Não especificado"
	}
	return fmt.Sprintf(rubricTemplate, topic, essayText)
}

const rubricTemplate = `INSTRUÇÕES: Você é um corretor especialista em redações do ENEM. Analise esta redação seguindo rigorosamente os critérios oficiais do ENEM.

IMPORTANTE: Retorne APENAS um JSON válido, sem texto antes ou depois, sem formatação markdown, sem explicações adicionais.

Estrutura do JSON:

{
  "finalScore": número de 0 a 1000,
  "competencies": {
    "Competência I": número de 0 a 200,
    "Competência II": número de 0 a 200,
    "Competência III": número de 0 a 200,
    "Competência IV": número de 0 a 200,
    "Competência V": número de 0 a 200
  },
  "feedback": {
    "summary": "resumo geral detalhado da correção (2-3 parágrafos)",
    "improvements": ["sugestão específica de melhoria 1", "sugestão específica de melhoria 2", "sugestão específica de melhoria 3"],
    "attention": ["ponto de atenção crítico 1", "ponto de atenção crítico 2", "ponto de atenção crítico 3"],
    "congratulations": ["aspecto positivo específico 1", "aspecto positivo específico 2", "aspecto positivo específico 3"],
    "competencyFeedback": {
      "Competência I": "feedback detalhado sobre domínio da modalidade escrita formal",
      "Competência II": "feedback detalhado sobre compreensão do tema e tipo textual",
      "Competência III": "feedback detalhado sobre seleção e organização de informações",
      "Competência IV": "feedback detalhado sobre coesão e coerência",
      "Competência V": "feedback detalhado sobre proposta de intervenção"
    }
  }
}

**CRITÉRIOS DETALHADOS DO ENEM:**

**Competência I - Domínio da modalidade escrita formal (0-200):**
- 200 pontos: Demonstra excelente domínio da modalidade escrita formal da língua portuguesa e de escolha de registro. Desvios gramaticais ou de convenções da escrita são aceitos somente como excepcionalidade.
- 160 pontos: Demonstra bom domínio da modalidade escrita formal, com poucos desvios gramaticais e de convenções da escrita.
- 120 pontos: Demonstra domínio mediano da modalidade escrita formal, com alguns desvios gramaticais e de convenções da escrita.
- 80 pontos: Demonstra domínio insuficiente da modalidade escrita formal, com muitos desvios gramaticais e de convenções da escrita.
- 40 pontos: Demonstra domínio precário da modalidade escrita formal, com inúmeros desvios gramaticais e de convenções da escrita.
- 0 pontos: Demonstra desconhecimento da modalidade escrita formal da língua portuguesa.

**Competência II - Compreender a proposta de redação e aplicar conceitos das várias áreas de conhecimento (0-200):**
- 200 pontos: Desenvolve o tema por meio de argumentação consistente, a partir de um repertório sociocultural produtivo e apresenta excelente domínio do texto dissertativo-argumentativo.
- 160 pontos: Desenvolve o tema por meio de argumentação consistente e apresenta bom domínio do texto dissertativo-argumentativo, com proposição, argumentação e conclusão.
- 120 pontos: Desenvolve o tema por meio de argumentação previsível e apresenta domínio mediano do texto dissertativo-argumentativo, com proposição, argumentação e conclusão.
- 80 pontos: Desenvolve o tema recorrendo à cópia de trechos dos textos motivadores ou apresenta domínio insuficiente do texto dissertativo-argumentativo.
- 40 pontos: Apresenta o assunto, tangenciando o tema, ou demonstra domínio precário do texto dissertativo-argumentativo.
- 0 pontos: Fuga ao tema/não atendimento à estrutura dissertativo-argumentativa.

**Competência III - Selecionar, relacionar, organizar e interpretar informações, fatos, opiniões e argumentos (0-200):**
- 200 pontos: Apresenta informações, fatos e opiniões relacionados ao tema proposto, de forma consistente e organizada, configurando autoria, em defesa de um ponto de vista.
- 160 pontos: Apresenta informações, fatos e opiniões relacionados ao tema, de forma organizada, com indícios de autoria, em defesa de um ponto de vista.
- 120 pontos: Apresenta informações, fatos e opiniões relacionados ao tema, limitados aos argumentos dos textos motivadores e pouco organizados, em defesa de um ponto de vista.
- 80 pontos: Apresenta informações, fatos e opiniões relacionados ao tema, mas desorganizados ou contraditórios e limitados aos argumentos dos textos motivadores.
- 40 pontos: Apresenta informações, fatos e opiniões pouco relacionados ao tema ou incoerentes e sem defesa de um ponto de vista.
- 0 pontos: Apresenta informações, fatos e opiniões não relacionados ao tema e sem defesa de um ponto de vista.

**Competência IV - Demonstrar conhecimento dos mecanismos linguísticos necessários para a construção da argumentação (0-200):**
- 200 pontos: Articula bem as partes do texto e apresenta repertório diversificado de recursos coesivos.
- 160 pontos: Articula as partes do texto com poucas inadequações e apresenta repertório diversificado de recursos coesivos.
- 120 pontos: Articula as partes do texto, de forma mediana, com inadequações, e apresenta repertório pouco diversificado de recursos coesivos.
- 80 pontos: Articula as partes do texto, de forma insuficiente, com muitas inadequações e apresenta repertório limitado de recursos coesivos.
- 40 pontos: Articula as partes do texto de forma precária.
- 0 pontos: Não articula as informações.

**Competência V - Elaborar proposta de intervenção para o problema abordado (0-200):**
- 200 pontos: Elabora muito bem proposta de intervenção com detalhamento dos meios para realizá-la.
- 160 pontos: Elabora bem proposta de intervenção relacionada ao tema e articulada à discussão desenvolvida no texto.
- 120 pontos: Elabora, de forma mediana, proposta de intervenção relacionada ao tema e articulada à discussão desenvolvida no texto.
- 80 pontos: Elabora, de forma insuficiente, proposta de intervenção relacionada ao tema, ou não articulada com a discussão desenvolvida no texto.
- 40 pontos: Apresenta proposta de intervenção vaga, precária ou relacionada apenas ao assunto.
- 0 pontos: Não apresenta proposta de intervenção ou apresenta proposta não relacionada ao tema ou ao assunto.

**TEMA DA REDAÇÃO:** %s

**REDAÇÃO A SER ANALISADA:**
%s

TAREFA: Analise cada competência detalhadamente e seja criterioso na pontuação. Forneça feedback construtivo e específico.

LEMBRETE FINAL: Sua resposta deve ser APENAS o JSON válido, começando com { e terminando com }. Não inclua explicações, comentários ou formatação markdown.`
