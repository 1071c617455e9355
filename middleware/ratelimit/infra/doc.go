// Package infra contém implementações concretas para os contratos do pacote domain.
//
// Exemplos:
//   - WindowStore: janela deslizante em memória (deque por chave, lock único)
//   - RedisWindowStore: janela deslizante compartilhada (sorted set + Lua)
//   - ShieldStore: token bucket por IP usando golang.org/x/time/rate
//   - ChanPool: semáforo para limitar encaminhamentos simultâneos
//   - MemoryStatsStore / RedisStatsStore: contadores de decisões
package infra
