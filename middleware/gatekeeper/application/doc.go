// Package application contém os casos de uso do gatekeeper: verificação de
// assinatura, janela de replay, controle de acesso por rede, rate limit e a
// orquestração desses estágios (Gatekeeper).
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Gatekeeper.Evaluate(ctx, req) retorna um Outcome (admitido/rejeitado).
package application
