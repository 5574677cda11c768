// Package gatekeeper fornece o adapter HTTP (net/http) do gatekeeper de requisições.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (assinatura, replay, rede, rate limit, orquestração) sem net/http
//   - infra: implementações concretas (janela deslizante, credenciais, sinks de auditoria)
//   - gatekeeper (este pacote): middleware HTTP + extração de endereço + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Responde preflight OPTIONS (se habilitado) sem chegar no handler
//  2. Limita requisições simultâneas (opcional)
//  3. Lê o corpo, resolve o endereço do cliente (XFF confiável -> RemoteAddr)
//  4. Aplica o flood guard pré-autenticação por endereço (opcional)
//  5. Chama Gatekeeper.Evaluate: autenticação -> rede -> rate limit
//  6. Se rejeitado, responde 401/403/429/500 com JSON estruturado
//  7. Se admitido, anexa o AuthenticatedContext e chama o próximo handler
//
// O binário gateway (cmd/gateway) lê um YAML com credenciais, padrões de rede e
// regras por rota; variáveis GATEKEEPER_* sobrescrevem o arquivo.
package gatekeeper
