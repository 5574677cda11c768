// Package domain define contratos e tipos de domínio do gatekeeper:
// credenciais, envelope assinado, padrões de acesso, janelas de rate limit,
// eventos de segurança e a decisão final (admitido/rejeitado).
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras
// de detalhes de infraestrutura.
package domain
