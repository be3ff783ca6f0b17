// Package chaos はカオスエンジニアリング機能を提供する。
//
// ChaosMonkeyはシナリオの参加者（ブロッキング呼び出しを繰り返す
// ゴルーチン）に対して障害を注入し、各プリミティブのキャンセル経路と
// 長時間保持時の振る舞いをテストするために使用される。
//
// # 障害タイプ
//
// - Cancel: 参加者が実行中のブロッキング呼び出しのコンテキストをキャンセル
// - Delay: 参加者の次の保持時間（Release前やジョブ完了前）に遅延を注入
//
// # 使用例
//
//	config := chaos.DefaultConfig()
//	config.Interval = 3 * time.Second
//	config.TargetCount = 2
//
//	monkey := chaos.New(generator, config)
//	monkey.Start(ctx)
//	defer monkey.Stop()
package chaos
