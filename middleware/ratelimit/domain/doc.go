// Package domain define contratos e tipos de domínio para a admissão de
// submissões de formulário (janela deslizante), o escudo token-bucket e o
// limite de concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas.
package domain
