// Package signaling реализует сигнальный канал движка звонков.
//
// Канал передает JSON конверты вида {type, payload} в обе стороны.
// Через него приходят события управления звонком (call.accepted,
// call.rejected, call.canceled, call.ended) и медиа кадры
// (audio.frame, video.frame), а уходят локальные кадры с привязкой
// к идентификатору звонка.
//
// # Компоненты
//
//   - Envelope - конверт сообщения и типизированные payload структуры
//   - Channel - интерфейс двунаправленного канала
//   - WSChannel - реализация поверх WebSocket
//   - MemPair - пара каналов в памяти для тестов и демо
//   - ControlClient - REST клиент управления звонком (create/accept/
//     reject/cancel/end)
//
// Запросы reject/cancel/end выполняются по принципу best-effort:
// ошибки логируются, но никогда не блокируют освобождение локальных
// ресурсов.
package signaling
