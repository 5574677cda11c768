// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - WindowStore: janela deslizante por chave, particionada em shards com lock próprio
//   - MemoryCredentialStore: credenciais imutáveis em memória
//   - sinks de auditoria: log (zerolog), memória, Redis, Prometheus, fila assíncrona
//   - SlotPool: limite de concorrência sobre semaphore.Weighted
package infra
